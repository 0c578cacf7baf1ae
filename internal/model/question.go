package model

// Difficulty is a question difficulty band.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Harder returns the next difficulty up, or the same value at the ceiling.
func (d Difficulty) Harder() Difficulty {
	switch d {
	case DifficultyEasy:
		return DifficultyMedium
	case DifficultyMedium:
		return DifficultyHard
	}
	return d
}

// Easier returns the next difficulty down, or the same value at the floor.
func (d Difficulty) Easier() Difficulty {
	switch d {
	case DifficultyHard:
		return DifficultyMedium
	case DifficultyMedium:
		return DifficultyEasy
	}
	return d
}

// Question is an interview question from the read-only question bank.
// Immutable during a session; referenced by id.
type Question struct {
	ID          string     `json:"id" bson:"_id,omitempty"`
	Domain      string     `json:"domain" bson:"domain"`
	Topic       string     `json:"topic" bson:"topic"`
	SubTopic    string     `json:"subTopic,omitempty" bson:"sub_topic,omitempty"`
	Difficulty  Difficulty `json:"difficulty" bson:"difficulty"`
	Text        string     `json:"text" bson:"text"`
	Tags        []string   `json:"tags,omitempty" bson:"tags,omitempty"`
	Hints       []string   `json:"hints,omitempty" bson:"hints,omitempty"` // revealed progressively
	CompanyTags []string   `json:"companyTags,omitempty" bson:"company_tags,omitempty"`
	Active      bool       `json:"active" bson:"active"`
}
