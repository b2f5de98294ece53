package keystate

// Matches は active と combo が空きスロットを除いて同じ集合かを返す。
// 部分集合では一致とみなさない。
func Matches(active, combo Set) bool {
	for _, k := range active {
		if !k.IsZero() && !combo.Contains(k) {
			return false
		}
	}
	for _, k := range combo {
		if !k.IsZero() && !active.Contains(k) {
			return false
		}
	}
	return true
}
