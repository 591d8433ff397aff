package translation

type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var supportedLanguages = []Language{
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "it", Name: "Italian"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "ru", Name: "Russian"},
	{Code: "zh", Name: "Chinese"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ko", Name: "Korean"},
}

func SupportedLanguages() []Language {
	out := make([]Language, len(supportedLanguages))
	copy(out, supportedLanguages)
	return out
}

// LanguageName resolves a target code to its display name.
func LanguageName(code string) (string, bool) {
	for _, l := range supportedLanguages {
		if l.Code == code {
			return l.Name, true
		}
	}
	return "", false
}
