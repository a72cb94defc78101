//go:build unix

package credentials

import (
	"os"
	"syscall"
)

func copyOwner(f *os.File, orig os.FileInfo) error {
	if !orig.Mode().IsRegular() {
		return errNotRegular
	}
	want, ok := orig.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	cur, err := f.Stat()
	if err != nil {
		return err
	}
	if have, ok := cur.Sys().(*syscall.Stat_t); ok && have.Uid == want.Uid && have.Gid == want.Gid {
		return nil
	}
	return f.Chown(int(want.Uid), int(want.Gid))
}
