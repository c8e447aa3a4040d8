package criteria

import (
	"strconv"

	"github.com/viant/obpel/model"
	"github.com/viant/obpel/service/dao"
)

// FilterDocument reports whether doc satisfies every parameter. Parameters
// with an unknown name are ignored.
func FilterDocument(doc *model.Document, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil {
			continue
		}
		switch parameter.Name {
		case dao.ParameterName:
			if !matchString(doc.Name, parameter.Value) {
				return false
			}
		case dao.ParameterTargetNamespace:
			if !matchString(doc.TargetNamespace, parameter.Value) {
				return false
			}
		case dao.ParameterVersion:
			if !matchString(strconv.Itoa(doc.Version), parameter.Value) && !matchInt(doc.Version, parameter.Value) {
				return false
			}
		}
	}
	return true
}

func matchString(value string, expected interface{}) bool {
	switch actual := expected.(type) {
	case string:
		return value == actual
	case []string:
		for _, candidate := range actual {
			if value == candidate {
				return true
			}
		}
	}
	return false
}

func matchInt(value int, expected interface{}) bool {
	switch actual := expected.(type) {
	case int:
		return value == actual
	case []int:
		for _, candidate := range actual {
			if value == candidate {
				return true
			}
		}
	}
	return false
}
