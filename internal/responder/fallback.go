package responder

var fallbackReplies = map[string]string{
	"en": "Sorry, something went wrong on our side. Please try again in a moment.",
	"es": "Lo sentimos, algo salió mal por nuestra parte. Inténtelo de nuevo en un momento.",
	"fr": "Désolé, un problème est survenu de notre côté. Veuillez réessayer dans un instant.",
	"de": "Entschuldigung, bei uns ist etwas schiefgelaufen. Bitte versuchen Sie es gleich noch einmal.",
}

// FallbackReply returns a user-safe apology in the guest's language,
// falling back to English for anything unmapped.
func FallbackReply(language string) string {
	if reply, ok := fallbackReplies[language]; ok {
		return reply
	}
	return fallbackReplies["en"]
}
