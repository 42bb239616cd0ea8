package domain

// FieldDefinition describes the custom field type registered with Bitrix24
// and rendered by the handler script.
type FieldDefinition struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	ButtonText  string `json:"buttonText" yaml:"button_text"`
	HelpText    string `json:"helpText" yaml:"help_text"`
	Placeholder string `json:"placeholder" yaml:"placeholder"`
	HandlerPath string `json:"handlerPath" yaml:"handler_path"`
}

type RegistrationRequest struct {
	RequestID  string `json:"requestId,omitempty"`
	Domain     string `json:"domain"`
	AuthToken  string `json:"-"`
	HandlerURL string `json:"handlerUrl"`
}

// FieldTypePayload is the body of userfieldtype.add.
type FieldTypePayload struct {
	UserTypeID  string `json:"USER_TYPE_ID"`
	Handler     string `json:"HANDLER"`
	Title       string `json:"TITLE"`
	Description string `json:"DESCRIPTION"`
}

func (d FieldDefinition) Payload(handlerURL string) FieldTypePayload {
	return FieldTypePayload{
		UserTypeID:  d.ID,
		Handler:     handlerURL,
		Title:       d.Title,
		Description: d.Description,
	}
}

// Record is one line of the registration audit log.
type Record struct {
	RequestID  string     `json:"requestId"`
	Kind       RecordKind `json:"kind"`
	Domain     string     `json:"domain"`
	Token      string     `json:"token,omitempty"` // masked
	Endpoint   string     `json:"endpoint,omitempty"`
	StatusCode int        `json:"statusCode,omitempty"`
	Outcome    Outcome    `json:"outcome"`
	Error      string     `json:"error,omitempty"`
	DurationMs int64      `json:"durationMs"`
	At         string     `json:"at"`
}

type AttemptMsg struct {
	RequestID  string  `json:"requestId"`
	Domain     string  `json:"domain"`
	Endpoint   string  `json:"endpoint"`
	StatusCode int     `json:"statusCode,omitempty"`
	Outcome    Outcome `json:"outcome"`
	DurationMs int64   `json:"durationMs"`
}

type ResultMsg struct {
	RequestID string  `json:"requestId"`
	Domain    string  `json:"domain"`
	Endpoint  string  `json:"endpoint,omitempty"`
	Outcome   Outcome `json:"outcome"`
	Attempts  int     `json:"attempts"`
}
