package criteria

import (
	"github.com/stretchr/testify/assert"
	"github.com/viant/obpel/model"
	"github.com/viant/obpel/service/dao"
	"testing"
)

func TestFilterDocument(t *testing.T) {
	doc := &model.Document{Name: "order", TargetNamespace: "urn:shop", Version: 3}

	var testCases = []struct {
		name       string
		parameters []*dao.Parameter
		expect     bool
	}{
		{name: "no parameters", expect: true},
		{name: "name match", parameters: []*dao.Parameter{dao.NewParameter(dao.ParameterName, "order")}, expect: true},
		{name: "name mismatch", parameters: []*dao.Parameter{dao.NewParameter(dao.ParameterName, "invoice")}},
		{name: "name in list", parameters: []*dao.Parameter{dao.NewParameter(dao.ParameterName, "invoice", "order")}, expect: true},
		{name: "version as string", parameters: []*dao.Parameter{dao.NewParameter(dao.ParameterVersion, "3")}, expect: true},
		{name: "version as int", parameters: []*dao.Parameter{{Name: dao.ParameterVersion, Value: 2}}},
		{
			name: "all must match",
			parameters: []*dao.Parameter{
				dao.NewParameter(dao.ParameterName, "order"),
				dao.NewParameter(dao.ParameterTargetNamespace, "urn:other"),
			},
		},
		{name: "unknown ignored", parameters: []*dao.Parameter{dao.NewParameter("State", "running")}, expect: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expect, FilterDocument(doc, testCase.parameters))
		})
	}
}
