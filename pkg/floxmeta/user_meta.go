package floxmeta

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/nickryand/flox/pkg/errors"
	"github.com/nickryand/flox/pkg/git"
)

// SchemaVersion is the document format version this SDK reads and writes.
const SchemaVersion = 1

// Version is the schema version tag of the user metadata document. Any
// value other than SchemaVersion is rejected during parsing; format drift
// is a hard error, never a silent coercion.
type Version int

// MarshalJSON implements json.Marshaler.
func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(v))
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Version) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return stageError(ErrVersionMismatch, err)
	}
	if n != SchemaVersion {
		return errors.Wrapf(ErrVersionMismatch, "expected version %d, got %d", SchemaVersion, n)
	}
	*v = Version(n)
	return nil
}

// ChannelRef is the locator of a subscribed channel, for example
// "github:NixOS/nixpkgs". It round-trips through its string form: parsing
// validates the locator and rendering reproduces it exactly.
type ChannelRef struct {
	locator string
}

// ParseChannelRef validates and parses a channel locator.
func ParseChannelRef(s string) (ChannelRef, error) {
	if strings.TrimSpace(s) == "" {
		return ChannelRef{}, errors.New("channel locator must not be empty")
	}
	if strings.ContainsAny(s, " \t\n") {
		return ChannelRef{}, errors.Errorf("channel locator %q must not contain whitespace", s)
	}
	return ChannelRef{locator: s}, nil
}

// String returns the locator in its canonical string form.
func (c ChannelRef) String() string {
	return c.locator
}

// MarshalText implements encoding.TextMarshaler.
func (c ChannelRef) MarshalText() ([]byte, error) {
	return []byte(c.locator), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ChannelRef) UnmarshalText(text []byte) error {
	parsed, err := ParseChannelRef(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// UserMeta is the per-user metadata document persisted in the floxmeta
// repository. The JSON field names are a wire contract shared with other
// readers of the same store and must not change. Unknown fields are
// tolerated on read for forward compatibility.
//
// A UserMeta is an immutable snapshot of the store as of its load; updates
// are made by writing a new value through a Transaction, never by assuming
// an in-memory value still reflects the repository.
type UserMeta struct {
	// Channels maps channel names to their locators. A nil map ("never
	// subscribed") and an empty map ("cleared subscriptions") are distinct
	// documents; both survive a serialization round trip, so the key is
	// always emitted.
	Channels map[string]ChannelRef `json:"channels"`

	// ClientUUID identifies the installation, not the document.
	ClientUUID uuid.UUID `json:"floxClientUUID"`

	// MetricsConsent records whether the user consented to metrics
	// collection.
	MetricsConsent uint8 `json:"floxMetricsConsent"`

	// Version is the schema version tag, always SchemaVersion.
	Version Version `json:"version"`
}

// Encode renders the document in its canonical serialized form.
func (m *UserMeta) Encode() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// DecodeUserMeta parses a document from its serialized form. A schema
// version other than SchemaVersion, or a document without a version field
// at all, fails with ErrVersionMismatch.
func DecodeUserMeta(data []byte) (*UserMeta, error) {
	var meta UserMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	// A present version field other than SchemaVersion already failed in
	// Version.UnmarshalJSON; reaching here with the zero value means the
	// field was absent, which is just as much a schema violation.
	if meta.Version != SchemaVersion {
		return nil, errors.Wrapf(ErrVersionMismatch, "document has no version field, expected version %d", SchemaVersion)
	}
	return &meta, nil
}

// UserMeta loads the current user metadata document.
//
// The repository is synchronized with its remote first, then the document
// is read from the floxmain branch as of the just-synchronized state, then
// parsed. Each step maps to one error class: ErrSync (no read attempted),
// ErrNotFound (the document has never been written), ErrShow (object
// inaccessible), ErrDeserialize (parse or version failure). No partial or
// default document is ever returned.
func (f *Floxmeta) UserMeta(ctx context.Context) (*UserMeta, error) {
	if err := f.provider.Fetch(ctx); err != nil {
		return nil, stageError(ErrSync, err)
	}

	data, err := f.provider.Show(ctx, DefaultBranch+":"+UserMetaFile)
	if err != nil {
		if errors.Is(err, git.ErrObjectNotFound) {
			return nil, stageError(ErrNotFound, err)
		}
		return nil, stageError(ErrShow, err)
	}

	meta, err := DecodeUserMeta(data)
	if err != nil {
		return nil, stageError(ErrDeserialize, err)
	}
	return meta, nil
}

// SetUserMeta writes the document into the transaction's working copy and
// stages it.
//
// The working copy is switched to the floxmain branch, the document is
// serialized into floxUserMeta.json, and the file is staged. The change is
// neither durable nor visible to readers until the transaction is
// finalized with Commit; several writes can share one Commit.
//
// Writing a document identical to the stored one is not special-cased;
// whether an empty diff can be committed is the backend's concern.
func (t *Transaction) SetUserMeta(ctx context.Context, meta *UserMeta) error {
	if t.done {
		return ErrTransactionDone
	}

	if err := t.provider.Checkout(ctx, DefaultBranch, false); err != nil {
		return stageError(ErrCheckout, err)
	}

	data, err := meta.Encode()
	if err != nil {
		return stageError(ErrSerialize, err)
	}

	path := filepath.Join(t.provider.Workdir(), UserMetaFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return stageError(ErrWrite, err)
	}

	if err := t.provider.Add(ctx, UserMetaFile); err != nil {
		return stageError(ErrStage, err)
	}
	return nil
}
