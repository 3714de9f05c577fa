package gmail

// listResponse is the body of users.messages.list.
type listResponse struct {
	Messages []messageRef `json:"messages"`
}

type messageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// message is the subset of users.messages.get used by the client.
type message struct {
	ID      string      `json:"id"`
	Snippet string      `json:"snippet"`
	Payload messagePart `json:"payload"`
}

type messagePart struct {
	MimeType string        `json:"mimeType"`
	Headers  []header      `json:"headers"`
	Body     partBody      `json:"body"`
	Parts    []messagePart `json:"parts"`
}

type header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type partBody struct {
	Data string `json:"data"`
	Size int    `json:"size"`
}

type sendRequest struct {
	Raw string `json:"raw"`
}

// errorResponse is the Google API error envelope.
type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
