package vision

import "fmt"

const quickIdentifyPrompt = `You are an art historian. Identify the artwork in the photo.
Respond with JSON only: {"title": string, "artist": string, "year": string}.
Use "Unknown" for the title and "Unknown Artist" for the artist when you
cannot name the specific work. Keep original-language titles as-is.`

const generatePromptTemplate = `You are a museum docent. Describe the artwork in the photo for a visitor.
Respond with JSON only, in this shape:
{
  "title": string,
  "artist": string,
  "year": string,
  "style": string,
  "medium": string,
  "museum": string,
  "summary": string,
  "narration": string,
  "artist_introduction": string,
  "sources": [string],
  "confidence": number,
  "recognized": boolean
}
Write "summary" as one or two sentences and "narration" as two to four
spoken-style paragraphs, both in the language with BCP-47 tag %q.
Set "recognized" to false and describe the style instead when you cannot
identify the specific work. "confidence" is your recognition confidence
between 0 and 1. Use "Unknown" / "Unknown Artist" for fields you cannot
resolve. "sources" lists reference URLs you are confident about, or [].`

func generatePrompt(lang string) string {
	if lang == "" {
		lang = "en"
	}
	return fmt.Sprintf(generatePromptTemplate, lang)
}
