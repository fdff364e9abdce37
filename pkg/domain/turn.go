package domain

// Speaker identifies who produced a dialogue turn.
type Speaker string

const (
	SpeakerBot  Speaker = "bot"
	SpeakerUser Speaker = "user"
)

// Turn is one emission on the dialogue surface.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}
