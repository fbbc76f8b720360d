package badger

// Database Key Namespace Design
// ==============================
//
// Data Type        Prefix  Key Format                    Value
// ==================================================================
// Entity           "e:"    e:<path>                      entity record (XDR)
// Children index   "c:"    c:<parentPath>\x00<name>      child path (bytes)
//
// Entity keys sort in path order, so Scan over a path prefix is a single
// Badger prefix iteration. The NUL separator in child keys keeps the
// children of "/a" from matching the children of "/ab".

const (
	prefixEntity = "e:"
	prefixChild  = "c:"
)

func keyEntity(path string) []byte {
	return []byte(prefixEntity + path)
}

func keyChildPrefix(parent string) []byte {
	return []byte(prefixChild + parent + "\x00")
}

func keyChild(parent, name string) []byte {
	return []byte(prefixChild + parent + "\x00" + name)
}
