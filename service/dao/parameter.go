package dao

// Parameter narrows a List call. Stores match parameters by Name.
type Parameter struct {
	Name  string
	Value interface{}
}

// Well-known parameter names understood by the definition stores.
const (
	ParameterName            = "Name"
	ParameterTargetNamespace = "TargetNamespace"
	ParameterVersion         = "Version"
)

func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}
