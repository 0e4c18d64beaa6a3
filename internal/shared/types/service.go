package types

// Category groups capability services.
type Category string

const (
	CategoryIntrospection Category = "introspection"
	CategoryWeb           Category = "web"
	CategoryTransform     Category = "transform"
	CategoryRemote        Category = "remote"
)

// Service describes one capability service a client can call.
type Service struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     Category `json:"category"`
	Capabilities []string `json:"capabilities,omitempty"`
	Methods      []Method `json:"methods"`
}

// Method describes one callable method of a service.
type Method struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters,omitempty"`
	Returns     string      `json:"returns"`
}

// Parameter describes a method parameter.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// CallContext carries the origin of a capability call into providers.
type CallContext struct {
	ConnID    string `json:"conn_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Result is the outcome of one provider method execution.
type Result struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *string                `json:"error,omitempty"`
}

// Success builds a successful Result.
func Success(data map[string]interface{}) *Result {
	return &Result{Success: true, Data: data}
}

// Failure builds a failed Result with a message.
func Failure(message string) *Result {
	return &Result{Success: false, Error: &message}
}
