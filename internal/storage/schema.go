package storage

import "encoding/json"

// Collection and index names of the persisted schema. Repositories refer
// to these constants rather than raw strings.
const (
	CollectionSubjects   = "subjects"
	CollectionLectures   = "lectures"
	CollectionNotes      = "notes"
	CollectionFlashcards = "flashcards"
	CollectionTempFiles  = "tempFiles"

	IndexBySubject = "bySubject"
	IndexByLecture = "byLecture"
	IndexByDueDate = "byDueDate"
)

// Index maps a string-valued JSON field of a record to a queryable
// column. The value is extracted from the marshalled record at write
// time; an absent or empty field indexes as NULL and never matches a
// lookup.
type Index struct {
	Name  string // index name, e.g. "bySubject"
	Field string // JSON field holding the indexed value, e.g. "subjectId"
}

// Collection is a named set of JSON records addressed by unique key,
// with zero or more secondary indexes.
type Collection struct {
	Name    string
	Indexes []Index
}

// UpgradeFunc rewrites one persisted record to the current shape. It
// returns the new record bytes and whether anything changed. Upgrades
// run once, inside the migration transaction, never at read time.
type UpgradeFunc func(key string, record []byte) ([]byte, bool, error)

// Upgrade names a collection whose existing records must be rewritten as
// part of a schema version.
type Upgrade struct {
	Collection string
	Apply      UpgradeFunc
}

// Migration is one monotonic schema step. Steps only ever add collections
// and indexes or rewrite records forward; nothing is dropped.
type Migration struct {
	Version  int
	Create   []Collection
	Upgrades []Upgrade
}

// migrations is the full schema history. Version N runs only when the
// stored version is below N.
func migrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Create: []Collection{
				{Name: CollectionSubjects},
				{Name: CollectionLectures, Indexes: []Index{{Name: IndexBySubject, Field: "subjectId"}}},
				{Name: CollectionNotes, Indexes: []Index{{Name: IndexByLecture, Field: "lectureId"}}},
			},
		},
		{
			Version: 2,
			Create: []Collection{
				{Name: CollectionFlashcards, Indexes: []Index{
					{Name: IndexBySubject, Field: "subjectId"},
					{Name: IndexByDueDate, Field: "dueDate"},
				}},
				{Name: CollectionTempFiles},
			},
		},
		{
			// Early builds persisted the lecture title under "name".
			Version:  3,
			Upgrades: []Upgrade{{Collection: CollectionLectures, Apply: renameLectureNameToTitle}},
		},
	}
}

func renameLectureNameToTitle(_ string, record []byte) ([]byte, bool, error) {
	var fields map[string]any
	if err := json.Unmarshal(record, &fields); err != nil {
		return nil, false, err
	}
	legacy, ok := fields["name"]
	if !ok {
		return nil, false, nil
	}
	if _, has := fields["title"]; !has {
		fields["title"] = legacy
	}
	delete(fields, "name")
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// collectionsByName flattens the migration history into a lookup of the
// final shape of every collection.
func collectionsByName() map[string]Collection {
	byName := make(map[string]Collection)
	for _, m := range migrations() {
		for _, c := range m.Create {
			byName[c.Name] = c
		}
	}
	return byName
}
