package render

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"

	"ghp-go/internal/ghp"
)

// Fingerprint hashes a change record's canonical JSON form. Every field of
// the record influences rendered output, so any server-side edit to a
// change (new message, new vote, new patch set) yields a new fingerprint.
// encoding/json sorts map keys, which keeps the encoding stable for the
// Labels map.
func Fingerprint(change *ghp.ChangeRecord) string {
	encoded, err := json.Marshal(change)
	if err != nil {
		// ChangeRecord contains only marshalable types.
		panic(err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// commentAnchor derives a stable HTML anchor for one inline comment. The
// anchor survives re-renders because it depends only on comment identity,
// not on position in the page.
func commentAnchor(c ghp.Comment) string {
	h := sha256.New()
	h.Write([]byte(c.File))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.Itoa(c.Line)))
	h.Write([]byte{'|'})
	h.Write([]byte(c.Author.Name))
	h.Write([]byte{'|'})
	h.Write([]byte(c.Written.UTC().Format("2006-01-02 15:04:05.000000000")))
	return "c-" + hex.EncodeToString(h.Sum(nil))[:12]
}
