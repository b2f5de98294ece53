package device

import (
	"fmt"
	"io"
	"os"

	evdev "github.com/holoplot/go-evdev"
)

// Info は -list で表示するデバイス情報
type Info struct {
	Path      string
	Name      string
	VendorID  uint16
	ProductID uint16
}

func (i Info) String() string {
	return fmt.Sprintf("%s\t%04x:%04x\t%s", i.Path, i.VendorID, i.ProductID, i.Name)
}

// List は接続されている入力デバイスを列挙する
func List() ([]Info, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(paths))
	for _, p := range paths {
		info := Info{Path: p.Path, Name: p.Name}
		dev, err := evdev.OpenWithFlags(p.Path, os.O_RDONLY)
		if err == nil {
			if id, err := dev.InputID(); err == nil {
				info.VendorID = id.Vendor
				info.ProductID = id.Product
			}
			dev.Close()
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// PrintList はデバイス一覧を w に書き出す
func PrintList(w io.Writer, infos []Info) {
	for _, info := range infos {
		fmt.Fprintln(w, info.String())
	}
}
