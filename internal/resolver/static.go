package resolver

// staticResponses are canned replies matched against the normalized
// message before any external source is consulted. Never written back
// to the answer sheet.
var staticResponses = map[string]string{
	"hello":       "Hello! Laila is here. How are you?",
	"hi":          "Hi there! Laila is ready to help you.",
	"how are you": "I'm doing great! Just ready to assist you with anything you need.",
	"who are you": "I am Laila, your friendly AI assistant! You can ask me anything you want.",
}
