package store

import (
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/tinylora/classa/cryptocore"
)

func TestSQLiteStoreJoinWriteOrder(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "session.db")
	st, err := OpenSQLiteStore(dbPath)
	test.That(t, err, test.ShouldBeNil)
	defer st.Close() //nolint:errcheck

	sess, err := st.Load()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sess.Magic, test.ShouldBeFalse)

	nonce, err := st.IncrementDevNonce()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, nonce, test.ShouldEqual, uint16(1))

	var keys cryptocore.SessionKeys
	copy(keys.AppSKey[:], []byte("APPLICATIONKEY01"))
	copy(keys.FNwkSIntKey[:], []byte("FNETWORKKEYAAAAA"))
	copy(keys.SNwkSIntKey[:], []byte("SNETWORKKEYAAAAA"))
	copy(keys.NwkSEncKey[:], []byte("NWKSENCKEYAAAAAA"))

	test.That(t, st.SaveKeys(false, keys), test.ShouldBeNil)
	test.That(t, st.SetDevAddr(0x11223344), test.ShouldBeNil)
	test.That(t, st.ResetFCntUp(), test.ShouldBeNil)
	test.That(t, st.CommitMagic(), test.ShouldBeNil)

	sess, err = st.Load()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sess.Magic, test.ShouldBeTrue)
	test.That(t, sess.DevAddr, test.ShouldEqual, uint32(0x11223344))
	test.That(t, sess.FCntUp, test.ShouldEqual, uint32(0))
	test.That(t, sess.AppSKey, test.ShouldResemble, keys.AppSKey)
}

func TestSQLiteStoreWipe(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "session.db")
	st, err := OpenSQLiteStore(dbPath)
	test.That(t, err, test.ShouldBeNil)
	defer st.Close() //nolint:errcheck

	_, err = st.IncrementDevNonce()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, st.CommitMagic(), test.ShouldBeNil)

	test.That(t, st.Wipe(), test.ShouldBeNil)

	sess, err := st.Load()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sess.Magic, test.ShouldBeFalse)
}
