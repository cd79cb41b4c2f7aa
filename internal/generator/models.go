package generator

// Chat is a generation conversation on the platform. DemoURL is the public
// preview of the generated page.
type Chat struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	DemoURL string `json:"demo"`
	WebURL  string `json:"url"`
}

type createChatRequest struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

type chatResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Demo   string `json:"demo"`
	URL    string `json:"url"`
	Files  []struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	} `json:"files"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
