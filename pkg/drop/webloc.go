package drop

import (
	"os"

	"github.com/pkg/errors"
	"howett.net/plist"
)

type weblocPayload struct {
	URL string `plist:"URL"`
}

// writeWebloc writes a Finder-compatible binary property list pointing
// at the given redirect target.
func writeWebloc(path, target string) error {
	data, err := plist.Marshal(weblocPayload{URL: target}, plist.BinaryFormat)
	if err != nil {
		return errors.Wrap(err, "failed to encode webloc")
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write webloc")
	}
	return nil
}
