package e32

import "fmt"

// VersionSize is the size of a version record on the wire.
const VersionSize = 4

// Version contains the module identity as returned by the version command.
type Version struct {
	Head     Head
	Model    byte
	Version  byte
	Features byte
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (v Version) MarshalBinary() ([]byte, error) {
	return []byte{byte(v.Head), v.Model, v.Version, v.Features}, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (v *Version) UnmarshalBinary(data []byte) error {
	if len(data) != VersionSize {
		return fmt.Errorf("version record must be %d bytes, got %d", VersionSize, len(data))
	}

	*v = Version{
		Head:     Head(data[0]),
		Model:    data[1],
		Version:  data[2],
		Features: data[3],
	}

	return nil
}

func (v Version) String() string {
	return fmt.Sprintf("model=0x%02X version=0x%02X features=0x%02X", v.Model, v.Version, v.Features)
}
