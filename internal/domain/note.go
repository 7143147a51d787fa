package domain

// NoteKind classifies the notes attached to a lecture.
type NoteKind string

const (
	NoteTranscript NoteKind = "transcript"
	NoteCleaned    NoteKind = "cleaned"
	NoteSummary    NoteKind = "summary"
	NoteUser       NoteKind = "user"
	NoteExamBank   NoteKind = "exam-bank"
)

// ValidNoteKind reports whether k is one of the known note kinds.
func ValidNoteKind(k NoteKind) bool {
	switch k {
	case NoteTranscript, NoteCleaned, NoteSummary, NoteUser, NoteExamBank:
		return true
	default:
		return false
	}
}

// Note is a piece of text attached to a lecture. Multiple notes of the
// same kind may coexist, except the user draft which is upserted in place.
type Note struct {
	ID        string   `json:"id"`
	LectureID string   `json:"lectureId"`
	Kind      NoteKind `json:"kind"`
	Content   string   `json:"content"`
}

// NewNote creates a note with a fresh id.
func NewNote(lectureID string, kind NoteKind, content string) Note {
	return Note{
		ID:        NewID(),
		LectureID: lectureID,
		Kind:      kind,
		Content:   content,
	}
}
