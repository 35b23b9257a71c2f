package risk

// Kind identifies an assessment questionnaire.
type Kind string

const (
	KindHeart  Kind = "heart"
	KindStroke Kind = "stroke"
)

// Factor is a single yes/no question with a fixed weight.
type Factor struct {
	ID       string
	Weight   int
	Question string
}

// Questionnaire is an ordered, read-only set of factors. Scoring walks the
// factors in this order.
type Questionnaire struct {
	Kind    Kind
	factors []Factor
	index   map[string]int
}

func newQuestionnaire(kind Kind, factors []Factor) Questionnaire {
	index := make(map[string]int, len(factors))
	for i, f := range factors {
		index[f.ID] = i
	}
	return Questionnaire{Kind: kind, factors: factors, index: index}
}

// Factors returns a copy of the factors in definition order.
func (q Questionnaire) Factors() []Factor {
	out := make([]Factor, len(q.factors))
	copy(out, q.factors)
	return out
}

// Len is the number of factors.
func (q Questionnaire) Len() int { return len(q.factors) }

// Has reports whether id is one of the questionnaire's factor IDs.
func (q Questionnaire) Has(id string) bool {
	_, ok := q.index[id]
	return ok
}

// Weight returns the weight for id, or 0 when id is unknown.
func (q Questionnaire) Weight(id string) int {
	i, ok := q.index[id]
	if !ok {
		return 0
	}
	return q.factors[i].Weight
}

// Lookup returns the factor for id.
func (q Questionnaire) Lookup(id string) (Factor, bool) {
	i, ok := q.index[id]
	if !ok {
		return Factor{}, false
	}
	return q.factors[i], true
}

// MaxRawScore is the sum of all weights before clamping.
func (q Questionnaire) MaxRawScore() int {
	total := 0
	for _, f := range q.factors {
		total += f.Weight
	}
	return total
}

// HeartFactors is the heart attack questionnaire. Weights sum to 135.
var HeartFactors = newQuestionnaire(KindHeart, []Factor{
	// symptoms
	{ID: "chest_pain", Weight: 20, Question: "Do you experience chest pain or discomfort?"},
	{ID: "shortness_breath", Weight: 15, Question: "Do you often feel shortness of breath (even at rest)?"},
	{ID: "fatigue", Weight: 10, Question: "Do you feel extreme fatigue or weakness often?"},
	{ID: "palpitations", Weight: 10, Question: "Do you have palpitations (fast or irregular heartbeat)?"},
	{ID: "dizziness", Weight: 10, Question: "Do you feel dizziness or lightheadedness frequently?"},
	{ID: "swelling", Weight: 10, Question: "Do you experience swelling in legs, ankles, or feet?"},
	{ID: "nausea", Weight: 5, Question: "Do you have nausea or cold sweats often?"},

	// conditions and lifestyle
	{ID: "high_bp", Weight: 10, Question: "Do you have high blood pressure?"},
	{ID: "high_cholesterol", Weight: 10, Question: "Do you have high cholesterol?"},
	{ID: "diabetes", Weight: 10, Question: "Do you have diabetes?"},
	{ID: "smoking", Weight: 10, Question: "Do you smoke regularly?"},
	{ID: "alcohol", Weight: 5, Question: "Do you drink alcohol excessively?"},
	{ID: "obesity", Weight: 10, Question: "Do you have obesity or overweight issues?"},
	{ID: "sedentary", Weight: 5, Question: "Do you have a sedentary (inactive) lifestyle?"},

	// family and age
	{ID: "family_history", Weight: 5, Question: "Do you have a family history of heart disease?"},
	{ID: "age", Weight: 5, Question: "Are you above 55 years (men) or 65 years (women)?"},
	{ID: "stress", Weight: 5, Question: "Do you have high stress levels?"},
})

// StrokeFactors is the stroke questionnaire. Weights sum to 155.
var StrokeFactors = newQuestionnaire(KindStroke, []Factor{
	// BE-FAST warning signs
	{ID: "weakness_numbness", Weight: 25, Question: "Do you experience sudden weakness or numbness in face, arm, or leg (especially one side)?"},
	{ID: "speech_difficulty", Weight: 20, Question: "Do you have sudden difficulty speaking or understanding speech?"},
	{ID: "vision_problems", Weight: 10, Question: "Do you have sudden vision problems (one or both eyes)?"},
	{ID: "balance_issues", Weight: 10, Question: "Do you have sudden dizziness, loss of balance, or trouble walking?"},
	{ID: "severe_headache", Weight: 10, Question: "Do you have sudden severe headache with no known cause?"},

	// conditions and lifestyle
	{ID: "high_bp", Weight: 15, Question: "Do you have high blood pressure?"},
	{ID: "diabetes", Weight: 10, Question: "Do you have diabetes?"},
	{ID: "high_cholesterol", Weight: 10, Question: "Do you have high cholesterol?"},
	{ID: "irregular_heartbeat", Weight: 10, Question: "Do you have atrial fibrillation or irregular heartbeat?"},
	{ID: "smoking", Weight: 10, Question: "Do you smoke regularly?"},
	{ID: "alcohol", Weight: 5, Question: "Do you drink alcohol excessively?"},
	{ID: "obesity", Weight: 10, Question: "Do you have obesity or overweight issues?"},
	{ID: "sedentary", Weight: 5, Question: "Do you have a sedentary (inactive) lifestyle?"},

	// family, age and stress
	{ID: "family_history", Weight: 5, Question: "Do you have a family history of stroke?"},
	{ID: "age", Weight: 5, Question: "Are you above 55 years of age?"},
	{ID: "stress", Weight: 5, Question: "Do you live under high stress?"},
})

// ForKind returns the built-in questionnaire for kind.
func ForKind(kind Kind) (Questionnaire, bool) {
	switch kind {
	case KindHeart:
		return HeartFactors, true
	case KindStroke:
		return StrokeFactors, true
	default:
		return Questionnaire{}, false
	}
}
