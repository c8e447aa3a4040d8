// Package definition groups the stores that persist the durable form of
// compiled process definitions, keyed by model.DefinitionID.
package definition

import (
	"sort"

	"github.com/viant/obpel/model"
	"github.com/viant/obpel/service/dao"
)

// Service persists process definition documents.
type Service = dao.Service[string, model.Document]

// SortByID orders documents by definition id.
func SortByID(docs []*model.Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}
