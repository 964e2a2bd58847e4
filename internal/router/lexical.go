package router

import "strings"

// LexicalModel is the default HeadModel: a keyword-scored classifier
// that needs no model weights. An embedding-backed classifier can be
// swapped in behind the same interface without touching the routing
// rules.
type LexicalModel struct{}

func NewLexicalModel() *LexicalModel { return &LexicalModel{} }

var cultureKeywords = []string{
	"cultura", "tradición", "tradiciones", "costumbre", "costumbres",
	"rituales", "país", "pais", "idioma", "lengua", "región", "religión",
	"étnico", "etnia", "herencia", "visitar", "visitando", "viajar",
	"viaje", "turista", "turismo", "extranjero", "extranjera", "etiqueta",
	"educado", "grosero", "descortés", "respetuoso",

	"culture", "cultural", "tradition", "custom", "customs", "ritual",
	"country", "language", "regional", "religion", "ethnic", "heritage",
	"visit", "visiting", "travel", "traveling", "tourist", "abroad",
	"foreign", "etiquette", "rude", "polite",
}

var taskCommandPrefixes = []string{
	"write ", "draft ", "compose ", "summarize ", "generate ", "create ",
	"message ", "send a message",

	"escribe ", "redacta ", "redacte ", "crea ", "cree ", "genera ",
	"genere ", "resume ", "resuma ", "haz ", "haga ", "envía ", "envíe ",
	"manda ", "mande ",
}

var taskCommandKeywords = []string{
	" write ", " draft ", " compose ", " summarize ", " generate ",
	" create ", " write a message", " draft a message",
	" compose a message", " send a message", " message for ",
	" message to ",

	" escribe ", " redacta ", " redacte ", " crea ", " genere ",
	" resume ", " mensaje para ", " mensaje a ", " escribir un mensaje",
	" redactar un mensaje", " crear un mensaje", " enviar un mensaje",
}

var advicePatterns = []string{
	"how can i", "how do i", "how to", "ways to", "what should i do",
	"best way to", "tips for", "advice on", "help me", "improve my",

	"cómo puedo", "como puedo", "cómo hago", "como hago",
	"qué puedo hacer", "que puedo hacer", "formas de",
	"mejores formas de", "mejor manera de", "consejos para",
	"recomendaciones para", "ayúdame a", "ayudame a", "quiero mejorar",
	"mejorar mi",
}

var emotionalKeywords = []string{
	"sad", "happy", "excited", "upset", "frustrated", "worried",
	"stressed", "angry", "afraid", "thrilled", "depressed", "anxious",
	"lonely", "love", "hate", "tired", "exhausted",

	"triste", "feliz", "emocionado", "emocionada", "contento", "contenta",
	"molesto", "molesta", "frustrado", "frustrada", "preocupado",
	"preocupada", "estresado", "estresada", "enojado", "enojada",
	"asustado", "asustada", "ansioso", "ansiosa", "cansado", "cansada",
	"agotado", "agotada", "abrumado", "abrumada",
}

var supportSignals = []string{
	"can't cope", "cannot cope", "overwhelmed", "hopeless", "give up",
	"no one understands", "nobody understands", "falling apart",
	"breaking down", "can't take it", "crying", "want to disappear",
}

var technicalKeywords = []string{
	"code", "bug", "server", "api", "function", "compile", "database",
	"error", "deploy", "algorithm", "software", "program", "script",
	"crash", "query", "install", "config", "kernel", "container",
}

var professionalKeywords = []string{
	"job", "boss", "career", "interview", "resume", "salary", "meeting",
	"coworker", "promotion", "client", "deadline", "workplace",
}

var legalKeywords = []string{
	"tax", "taxes", "law", "legal", "contract", "visa", "lawyer",
	"attorney", "court", "lawsuit", "regulation", "compliance", "gdpr",
}

var socialTopicKeywords = []string{
	"party", "wedding", "dinner", "hang out", "hanging out", "invite",
	"invited", "date", "dating", "gift", "birthday",
}

var preferencePatterns = []string{
	"favorite", "favourite", "prefer", "would you rather", "better than",
	"best ", "like more", "your opinion", "what do you think",
}

var greetings = []string{"hi", "hello", "hey", "yo", "sup", "hola", "thanks", "thank you"}

func containsCultureKeywords(lower string) bool { return containsAny(lower, cultureKeywords) }

func startsWithTaskCommand(lower string) bool {
	trimmed := strings.TrimLeft(lower, " \t\n")
	for _, p := range taskCommandPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return containsAny(lower, taskCommandKeywords)
}

func containsAdvicePatterns(lower string) bool { return containsAny(lower, advicePatterns) }

func hasEmotionalLanguage(lower string) bool { return containsAny(lower, emotionalKeywords) }

// isPreferenceTopic is the lexical heuristic behind the casual-opinion
// route: the speaker is volunteering or soliciting taste, not asking
// for facts.
func isPreferenceTopic(lower string) bool { return containsAny(lower, preferencePatterns) }

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func countAny(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

// Classify scores the four heads from surface features. Scores are raw
// and unnormalized; the caller softmaxes them per head.
func (m *LexicalModel) Classify(text string) (HeadScores, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	wordCount := len(strings.Fields(lower))
	hasQuestion := strings.Contains(lower, "?")

	speech := make([]float32, len(speechActNames))
	domain := make([]float32, len(domainNames))
	expect := make([]float32, len(expectationNames))

	// Speech act.
	speech[SpeechSharing] = 0.2
	for _, g := range greetings {
		if lower == g || strings.HasPrefix(lower, g+" ") || strings.HasPrefix(lower, g+",") {
			speech[SpeechSocial] += 2.5
		}
	}
	if wordCount <= 3 && !hasQuestion {
		speech[SpeechSocial] += 0.8
	}
	if hasQuestion {
		speech[SpeechAsking] += 2.0
	}
	for _, w := range []string{"what ", "why ", "how ", "when ", "where ", "who ", "can you", "could you", "do you", "is it", "are there"} {
		if strings.Contains(lower, w) {
			speech[SpeechAsking] += 0.6
			break
		}
	}
	if startsWithTaskCommand(lower) {
		speech[SpeechDirecting] += 2.8
		expect[ExpectAction] += 2.2
	}
	for _, w := range []string{"i feel", "i've been feeling", "i have been feeling", "feeling", "i think", "i'm so", "i am so", "honestly"} {
		if strings.Contains(lower, w) {
			speech[SpeechExpressing] += 1.2
		}
	}
	if hasEmotionalLanguage(lower) && !hasQuestion {
		speech[SpeechExpressing] += 1.4
	}
	for _, w := range []string{"guess what", "today i", "i just", "i finally", "i went"} {
		if strings.Contains(lower, w) {
			speech[SpeechSharing] += 1.5
		}
	}
	for _, w := range []string{"let's", "lets ", "we could", "shall we", "together we", "want to work"} {
		if strings.Contains(lower, w) {
			speech[SpeechCollaborative] += 1.8
		}
	}

	// Domain.
	domain[DomainGeneral] = 0.6
	domain[DomainOther] = 0.2
	domain[DomainTechnical] += 0.9 * float32(countAny(lower, technicalKeywords))
	domain[DomainProfessional] += 0.9 * float32(countAny(lower, professionalKeywords))
	domain[DomainLegal] += 1.0 * float32(countAny(lower, legalKeywords))
	domain[DomainSocial] += 0.8 * float32(countAny(lower, socialTopicKeywords))
	for _, w := range []string{"i feel", "my life", "myself", "my family", "my friend", "my partner", "my health", "i've been"} {
		if strings.Contains(lower, w) {
			domain[DomainPersonal] += 1.1
		}
	}
	if hasEmotionalLanguage(lower) {
		domain[DomainPersonal] += 0.8
	}

	// Expectation.
	expect[ExpectNone] = 0.8
	if hasQuestion {
		expect[ExpectInfo] += 1.5
	}
	if containsAdvicePatterns(lower) {
		expect[ExpectAdvice] += 2.4
		speech[SpeechAsking] += 0.5
	}
	for _, w := range []string{"should i", "what would you do", "recommend"} {
		if strings.Contains(lower, w) {
			expect[ExpectAdvice] += 1.2
		}
	}

	// Support head: probability-like score in [0,1] turned into a
	// two-class logit pair.
	var supportScore float32
	supportScore += 0.5 * float32(countAny(lower, supportSignals))
	if supportScore > 1 {
		supportScore = 1
	}
	support := []float32{3 * (1 - supportScore), 3 * supportScore}

	return HeadScores{
		SpeechAct:   speech,
		Domain:      domain,
		Expectation: expect,
		Support:     support,
	}, nil
}
