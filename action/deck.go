package action

import (
	"fmt"
	"strconv"
	"strings"
)

// ItemKind is the value type carried by a DeckItem
type ItemKind int

const (
	StringItem ItemKind = iota
	IntItem
	FloatItem
)

var itemKindNames = [...]string{StringItem: "string", IntItem: "int", FloatItem: "float"}

func (k ItemKind) String() string {
	if k < 0 || int(k) >= len(itemKindNames) {
		return "unknown"
	}
	return itemKindNames[k]
}

func (k ItemKind) MarshalText() ([]byte, error) {
	if k.String() == "unknown" {
		return nil, fmt.Errorf("unknown item kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *ItemKind) UnmarshalText(text []byte) error {
	for i, name := range itemKindNames {
		if string(text) == name {
			*k = ItemKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown item kind %q", text)
}

// DeckItem is one value of a deck record. A defaulted item carries no value
// and is written as part of an "N*" run.
type DeckItem struct {
	Name      string   `json:"name,omitempty"`
	Kind      ItemKind `json:"kind"`
	Str       string   `json:"str,omitempty"`
	Int       int      `json:"int,omitempty"`
	Float     float64  `json:"float,omitempty"`
	Defaulted bool     `json:"defaulted,omitempty"`
}

func StringValue(name, v string) DeckItem  { return DeckItem{Name: name, Kind: StringItem, Str: v} }
func IntValue(name string, v int) DeckItem { return DeckItem{Name: name, Kind: IntItem, Int: v} }
func FloatValue(name string, v float64) DeckItem {
	return DeckItem{Name: name, Kind: FloatItem, Float: v}
}
func Defaulted(name string) DeckItem { return DeckItem{Name: name, Defaulted: true} }

func (it DeckItem) format() string {
	switch it.Kind {
	case IntItem:
		return strconv.Itoa(it.Int)
	case FloatItem:
		return strconv.FormatFloat(it.Float, 'g', 6, 64)
	default:
		return "'" + it.Str + "'"
	}
}

// DeckRecord is one slash terminated line of a keyword
type DeckRecord struct {
	Items    []DeckItem `json:"items"`
	Location *Location  `json:"location,omitempty"`
}

// Item returns the first item called name
func (r DeckRecord) Item(name string) (DeckItem, bool) {
	for _, it := range r.Items {
		if it.Name == name {
			return it, true
		}
	}
	return DeckItem{}, false
}

// Strings returns the string values of every non-defaulted item called name
func (r DeckRecord) Strings(name string) []string {
	var out []string
	for _, it := range r.Items {
		if it.Name == name && !it.Defaulted {
			out = append(out, it.Str)
		}
	}
	return out
}

// DeckKeyword is a deck directive with its records
type DeckKeyword struct {
	Name            string       `json:"name"`
	Records         []DeckRecord `json:"records"`
	SlashTerminated bool         `json:"slashTerminated"`
	Location        Location     `json:"location"`
}

func (kw DeckKeyword) clone() DeckKeyword {
	cp := kw
	cp.Records = make([]DeckRecord, len(kw.Records))
	for i, rec := range kw.Records {
		cp.Records[i].Items = append([]DeckItem(nil), rec.Items...)
		if rec.Location != nil {
			loc := *rec.Location
			cp.Records[i].Location = &loc
		}
	}
	return cp
}

const (
	recordIndent   = "  "
	itemsPerLine   = 16
	recordTerminal = "/"
)

// String renders the keyword the way it would appear in a deck, one record
// per line followed by a closing slash when the keyword is slash terminated.
func (kw DeckKeyword) String() string {
	var b strings.Builder
	b.WriteString(kw.Name)
	b.WriteString("\n")
	for _, rec := range kw.Records {
		writeRecord(&b, rec)
	}
	if kw.SlashTerminated {
		b.WriteString(recordTerminal)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func writeRecord(b *strings.Builder, rec DeckRecord) {
	last := len(rec.Items)
	for last > 0 && rec.Items[last-1].Defaulted {
		last--
	}

	b.WriteString(recordIndent)
	onLine := 0
	defaults := 0
	emit := func(s string) {
		if onLine == itemsPerLine {
			b.WriteString("\n")
			b.WriteString(recordIndent)
			onLine = 0
		}
		if onLine > 0 {
			b.WriteString(" ")
		}
		b.WriteString(s)
		onLine++
	}

	for _, it := range rec.Items[:last] {
		if it.Defaulted {
			defaults++
			continue
		}
		if defaults > 0 {
			emit(strconv.Itoa(defaults) + "*")
			defaults = 0
		}
		emit(it.format())
	}
	if onLine > 0 {
		b.WriteString(" ")
	}
	b.WriteString(recordTerminal)
	b.WriteString("\n")
}
