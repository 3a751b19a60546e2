package http

import "net/http"

// InboundSMSCallbackRequest is the provider's form-encoded inbound message
// callback. Field names follow the provider contract, not Go convention.
type InboundSMSCallbackRequest struct {
	From       string `validate:"required"`
	To         string `validate:"required"`
	Body       string
	MessageSid string `validate:"required"`
}

// inboundRequestFromForm extracts the callback fields after ParseForm.
func inboundRequestFromForm(r *http.Request) InboundSMSCallbackRequest {
	return InboundSMSCallbackRequest{
		From:       r.PostFormValue("From"),
		To:         r.PostFormValue("To"),
		Body:       r.PostFormValue("Body"),
		MessageSid: r.PostFormValue("MessageSid"),
	}
}
