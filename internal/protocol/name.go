package protocol

const nameCodeMask = 0x1F

// Name is a two character entry mnemonic. Each character is carried on the
// wire as a 5-bit code; the first decodes in the upper-case class
// ('@'..'_'), the second in the lower-case class ('`'..DEL).
type Name [2]byte

// ParseName builds a Name from the first two characters of s. Missing
// characters become code 0.
func ParseName(s string) Name {
	var codes [2]byte
	for i := 0; i < len(codes) && i < len(s); i++ {
		codes[i] = s[i] & nameCodeMask
	}
	return nameFromCodes(codes[0], codes[1])
}

func nameFromCodes(first, second byte) Name {
	return Name{0x40 | first&nameCodeMask, 0x60 | second&nameCodeMask}
}

func (n Name) codes() (byte, byte) {
	return n[0] & nameCodeMask, n[1] & nameCodeMask
}

func (n Name) String() string {
	return string(n[:])
}

// Matches reports whether n names the same entry as s. Only the 5-bit codes
// are compared, so the match ignores case.
func (n Name) Matches(s string) bool {
	a0, a1 := n.codes()
	b0, b1 := ParseName(s).codes()
	return a0 == b0 && a1 == b1
}
