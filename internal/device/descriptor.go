// Package device は物理入力デバイスの検出、占有、読み取りと仮想出力デバイスを扱う。
package device

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultSysRoot = "/sys/class/input"
	DefaultDevRoot = "/dev/input"
)

// Descriptor は設定ファイルで指定された監視対象デバイス
type Descriptor struct {
	Index           int
	VendorID        uint16
	ProductID       uint16
	Name            string // 空なら名前は比較しない
	CheckCapability string // 空でなければ capabilities/<名前> が "0" 以外であること
}

func (d Descriptor) String() string {
	s := fmt.Sprintf("#%d %04x:%04x", d.Index, d.VendorID, d.ProductID)
	if d.Name != "" {
		s += fmt.Sprintf(" %q", d.Name)
	}
	return s
}

func readSysfs(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\n"), nil
}

func readHexID(path string) (uint16, error) {
	s, err := readSysfs(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return uint16(v), nil
}

// eventNodes は sysRoot 以下の eventN を番号順に返す
func eventNodes(sysRoot string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(sysRoot, "event*"))
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		ni, _ := strconv.Atoi(strings.TrimPrefix(filepath.Base(matches[i]), "event"))
		nj, _ := strconv.Atoi(strings.TrimPrefix(filepath.Base(matches[j]), "event"))
		return ni < nj
	})
	return matches, nil
}

func matchNode(node string, d Descriptor) (string, bool) {
	dev := filepath.Join(node, "device")
	vendor, err := readHexID(filepath.Join(dev, "id", "vendor"))
	if err != nil || vendor != d.VendorID {
		return "", false
	}
	product, err := readHexID(filepath.Join(dev, "id", "product"))
	if err != nil || product != d.ProductID {
		return "", false
	}
	name, _ := readSysfs(filepath.Join(dev, "name"))
	// 仮想出力は元デバイスの ID を引き継ぐので名前で除外する
	if isOwnOutput(name) {
		return "", false
	}
	if d.Name != "" && name != d.Name {
		return "", false
	}
	if d.CheckCapability != "" {
		capability, err := readSysfs(filepath.Join(dev, "capabilities", d.CheckCapability))
		if err != nil || strings.TrimSpace(capability) == "0" || strings.TrimSpace(capability) == "" {
			return "", false
		}
	}
	return name, true
}

func isOwnOutput(name string) bool {
	return strings.HasSuffix(name, ShadowSuffix) || name == DefaultOutputName
}

// Match は sysfs を走査して d に一致するイベントノードを探す。
// 戻り値のパスは devRoot 以下のデバイスノード。複数一致した場合は最初のものを使う。
func Match(sysRoot, devRoot string, d Descriptor) (path, name string, ok bool) {
	nodes, err := eventNodes(sysRoot)
	if err != nil {
		log.Debugf("sysfsの走査に失敗しました: %v", err)
		return "", "", false
	}
	var found []string
	for _, node := range nodes {
		n, matched := matchNode(node, d)
		if !matched {
			continue
		}
		if len(found) == 0 {
			name = n
		}
		found = append(found, filepath.Join(devRoot, filepath.Base(node)))
	}
	if len(found) == 0 {
		return "", "", false
	}
	if len(found) > 1 {
		log.WithField("device", d.String()).Warnf("複数のデバイスが一致しました。最初のものを使用します: %v", found)
	}
	return found[0], name, true
}
