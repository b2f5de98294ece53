package router

// DeviceStatus は1デバイスの状態
type DeviceStatus struct {
	Index  int    `json:"index"`
	Active bool   `json:"active"`
	Path   string `json:"path,omitempty"`
}

// Status はルーター状態のスナップショット
type Status struct {
	ActiveClient   int            `json:"active_client"`
	Local          bool           `json:"local"`
	Devices        []DeviceStatus `json:"devices"`
	Pressed        []string       `json:"pressed"`
	DroppedPresses uint64         `json:"dropped_presses"`
	PacketsSent    uint64         `json:"packets_sent"`
}

// Status は最後に公開されたスナップショットを返す。どのゴルーチンからも呼べる。
func (r *Router) Status() Status {
	return *r.status.Load()
}

func (r *Router) publish() {
	c := r.ActiveClient()
	s := &Status{
		ActiveClient:   c.Index,
		Local:          c.Local,
		Devices:        make([]DeviceStatus, 0, len(r.cfg.Devices)),
		Pressed:        make([]string, 0),
		DroppedPresses: r.register.Dropped(),
		PacketsSent:    r.sent,
	}
	for _, d := range r.cfg.Devices {
		ds := DeviceStatus{Index: d.Index(), Active: d.Active()}
		if ds.Active {
			ds.Path = d.Path()
		}
		s.Devices = append(s.Devices, ds)
	}
	for _, k := range r.register.Keys() {
		s.Pressed = append(s.Pressed, k.String())
	}
	r.status.Store(s)
}
