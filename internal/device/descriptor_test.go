package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	event   string
	vendor  string
	product string
	name    string
	caps    map[string]string
}

func writeFakeSysfs(t *testing.T, nodes ...fakeNode) string {
	t.Helper()
	root := t.TempDir()
	for _, n := range nodes {
		dev := filepath.Join(root, n.event, "device")
		require.NoError(t, os.MkdirAll(filepath.Join(dev, "id"), 0o755))
		require.NoError(t, os.MkdirAll(filepath.Join(dev, "capabilities"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dev, "id", "vendor"), []byte(n.vendor+"\n"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dev, "id", "product"), []byte(n.product+"\n"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dev, "name"), []byte(n.name+"\n"), 0o644))
		for c, v := range n.caps {
			require.NoError(t, os.WriteFile(filepath.Join(dev, "capabilities", c), []byte(v+"\n"), 0o644))
		}
	}
	return root
}

func TestMatchByID(t *testing.T) {
	root := writeFakeSysfs(t,
		fakeNode{event: "event2", vendor: "1234", product: "0001", name: "Other"},
		fakeNode{event: "event10", vendor: "046d", product: "c52b", name: "Logitech USB Receiver"},
	)

	path, name, ok := Match(root, "/dev/input", Descriptor{VendorID: 0x046d, ProductID: 0xc52b})
	require.True(t, ok)
	assert.Equal(t, "/dev/input/event10", path)
	assert.Equal(t, "Logitech USB Receiver", name)

	_, _, ok = Match(root, "/dev/input", Descriptor{VendorID: 0x046d, ProductID: 0xffff})
	assert.False(t, ok)
}

func TestMatchSkipsOwnOutputs(t *testing.T) {
	root := writeFakeSysfs(t,
		fakeNode{event: "event20", vendor: "046d", product: "c52b", name: "Logitech USB Receiver" + ShadowSuffix},
		fakeNode{event: "event21", vendor: "0000", product: "0000", name: DefaultOutputName},
	)

	_, _, ok := Match(root, "/dev/input", Descriptor{VendorID: 0x046d, ProductID: 0xc52b})
	assert.False(t, ok)
	_, _, ok = Match(root, "/dev/input", Descriptor{})
	assert.False(t, ok)

	root = writeFakeSysfs(t,
		fakeNode{event: "event3", vendor: "046d", product: "c52b", name: "Logitech USB Receiver"},
		fakeNode{event: "event20", vendor: "046d", product: "c52b", name: "Logitech USB Receiver" + ShadowSuffix},
	)
	path, _, ok := Match(root, "/dev/input", Descriptor{VendorID: 0x046d, ProductID: 0xc52b})
	require.True(t, ok)
	assert.Equal(t, "/dev/input/event3", path)
}

func TestMatchByNameAndCapability(t *testing.T) {
	root := writeFakeSysfs(t,
		fakeNode{event: "event3", vendor: "046d", product: "c52b", name: "Receiver Keyboard",
			caps: map[string]string{"rel": "0", "key": "ffff"}},
		fakeNode{event: "event4", vendor: "046d", product: "c52b", name: "Receiver Mouse",
			caps: map[string]string{"rel": "1943", "key": "1f0000"}},
	)

	path, _, ok := Match(root, "/dev/input", Descriptor{VendorID: 0x046d, ProductID: 0xc52b, Name: "Receiver Mouse"})
	require.True(t, ok)
	assert.Equal(t, "/dev/input/event4", path)

	path, _, ok = Match(root, "/dev/input", Descriptor{VendorID: 0x046d, ProductID: 0xc52b, CheckCapability: "rel"})
	require.True(t, ok)
	assert.Equal(t, "/dev/input/event4", path)

	_, _, ok = Match(root, "/dev/input", Descriptor{VendorID: 0x046d, ProductID: 0xc52b, CheckCapability: "abs"})
	assert.False(t, ok)
}

func TestMatchFirstWinsInNumericOrder(t *testing.T) {
	root := writeFakeSysfs(t,
		fakeNode{event: "event11", vendor: "0001", product: "0002", name: "b"},
		fakeNode{event: "event9", vendor: "0001", product: "0002", name: "a"},
	)
	path, name, ok := Match(root, "/dev/input", Descriptor{VendorID: 1, ProductID: 2})
	require.True(t, ok)
	assert.Equal(t, "/dev/input/event9", path)
	assert.Equal(t, "a", name)
}

func TestMatchMissingRoot(t *testing.T) {
	_, _, ok := Match(filepath.Join(t.TempDir(), "nope"), "/dev/input", Descriptor{VendorID: 1, ProductID: 2})
	assert.False(t, ok)
}
