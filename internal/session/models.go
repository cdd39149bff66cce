package session

import "fmt"

// Model is a selectable backend model.
type Model struct {
	ID   string
	Name string
}

// DefaultModel is selected at startup.
const DefaultModel = "flash"

// Models lists the selectable models in picker order.
var Models = []Model{
	{ID: "flash", Name: "Gemini 2.0 Flash"},
	{ID: "flash-2.5", Name: "Gemini 2.5 Flash"},
	{ID: "pro-2.5", Name: "Gemini 2.5 Pro"},
}

// LookupModel finds a model by id.
func LookupModel(id string) (Model, bool) {
	for _, m := range Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// ModelName returns the display name for id, or id itself when unknown.
func ModelName(id string) string {
	if m, ok := LookupModel(id); ok {
		return m.Name
	}
	return id
}

// NextModel returns the model after id in picker order, wrapping around.
func NextModel(id string) Model {
	for i, m := range Models {
		if m.ID == id {
			return Models[(i+1)%len(Models)]
		}
	}
	return Models[0]
}

// ValidateModel returns an error naming the valid ids when id is unknown.
func ValidateModel(id string) error {
	if _, ok := LookupModel(id); ok {
		return nil
	}
	ids := make([]string, len(Models))
	for i, m := range Models {
		ids[i] = m.ID
	}
	return fmt.Errorf("unknown model %q (available: %v)", id, ids)
}
