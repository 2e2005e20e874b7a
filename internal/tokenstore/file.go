package tokenstore

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultAccount is the key of the unlabeled account.
const DefaultAccount = "default"

// Form identifies which of the two on-disk layouts a token file uses.
type Form int

const (
	// FormLegacy is a single record at the document root.
	FormLegacy Form = iota
	// FormMulti maps account keys to records.
	FormMulti
)

func (f Form) String() string {
	switch f {
	case FormLegacy:
		return "legacy"
	case FormMulti:
		return "multi"
	default:
		return fmt.Sprintf("Form(%d)", int(f))
	}
}

// Accounts is an insertion-ordered mapping from account key to record.
type Accounts = orderedmap.OrderedMap[string, Record]

// NewAccounts returns an empty account mapping.
func NewAccounts() *Accounts {
	return orderedmap.New[string, Record]()
}

// File is the decoded content of a token file. Exactly one of the two
// variants is populated, as reported by Form.
type File struct {
	form     Form
	legacy   Record
	accounts *Accounts
}

// Legacy wraps a single record.
func Legacy(rec Record) *File {
	return &File{form: FormLegacy, legacy: rec}
}

// Multi wraps an account mapping. A nil mapping is treated as empty.
func Multi(accounts *Accounts) *File {
	if accounts == nil {
		accounts = NewAccounts()
	}
	return &File{form: FormMulti, accounts: accounts}
}

// Form reports the file layout.
func (f *File) Form() Form {
	return f.form
}

// LegacyRecord returns the sole record of a legacy file.
func (f *File) LegacyRecord() (Record, bool) {
	if f.form != FormLegacy {
		return Record{}, false
	}
	return f.legacy, true
}

// Accounts returns the mapping of a multi-account file, or nil for a legacy file.
func (f *File) Accounts() *Accounts {
	if f.form != FormMulti {
		return nil
	}
	return f.accounts
}

// Keys lists account keys in file order.
func (f *File) Keys() []string {
	if f.form == FormLegacy {
		return []string{DefaultAccount}
	}
	keys := make([]string, 0, f.accounts.Len())
	for pair := f.accounts.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Get returns the record stored under key. A legacy file only answers to
// DefaultAccount.
func (f *File) Get(key string) (Record, bool) {
	if f.form == FormLegacy {
		if key == DefaultAccount {
			return f.legacy, true
		}
		return Record{}, false
	}
	return f.accounts.Get(key)
}

// Upgrade returns the multi-account view of f. A legacy record moves under
// DefaultAccount. The receiver is not modified.
func (f *File) Upgrade() *File {
	if f.form == FormMulti {
		accounts := NewAccounts()
		for pair := f.accounts.Oldest(); pair != nil; pair = pair.Next() {
			accounts.Set(pair.Key, pair.Value)
		}
		return Multi(accounts)
	}
	accounts := NewAccounts()
	accounts.Set(DefaultAccount, f.legacy)
	return Multi(accounts)
}

// legacyMarker is the root field that marks the legacy layout. It can never
// be an account key, or the multi-account file would decode as legacy.
const legacyMarker = "refresh_token"

// isLegacyDocument applies the structural rule: a refresh_token field at the
// document root marks the legacy layout.
func isLegacyDocument(root map[string]json.RawMessage) bool {
	_, ok := root[legacyMarker]
	return ok
}

// Decode parses and classifies a token file.
func Decode(data []byte) (*File, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("token file is not a JSON object: %w", err)
	}

	if isLegacyDocument(root) {
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode legacy token: %w", err)
		}
		return Legacy(rec), nil
	}

	accounts := NewAccounts()
	if len(root) > 0 {
		if err := json.Unmarshal(data, accounts); err != nil {
			return nil, fmt.Errorf("failed to decode multi-account token file: %w", err)
		}
	}
	return Multi(accounts), nil
}

// Encode serializes the file in its layout, indented like the files written
// by the Google client libraries.
func (f *File) Encode() ([]byte, error) {
	var raw []byte
	var err error
	if f.form == FormLegacy {
		raw, err = json.Marshal(f.legacy)
	} else {
		raw, err = json.Marshal(f.accounts)
	}
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}
