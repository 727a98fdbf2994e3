package cachefs

import "github.com/alexisbouchez/docnav/docerr"

func wrapIO(message string, err error) error {
	return docerr.Wrap(docerr.IO, message, err)
}
