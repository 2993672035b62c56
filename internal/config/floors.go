package config

// Floors substituted for configured values below the minimum.
// Out-of-range values never fail a load.
const (
	MinJump                 float32 = 0
	MinLowListenerIncrease  float32 = 0
	MinHighListenerDec      float32 = 0
	MinHighListenerDecEvery float32 = 1
	MinResetPcnt            float32 = 0
	MinAdjustPcnt           float32 = 0
	MinSpikesRequired               = 1
	MinUpdateTime           float32 = 5
)

func floor32(v, lo float32) float32 {
	if v < lo {
		return lo
	}
	return v
}

func (s *Spike) applyFloors() {
	s.Jump = floor32(s.Jump, MinJump)
	s.LowListenerIncrease = floor32(s.LowListenerIncrease, MinLowListenerIncrease)
	s.HighListenerDec = floor32(s.HighListenerDec, MinHighListenerDec)
	s.HighListenerDecEvery = floor32(s.HighListenerDecEvery, MinHighListenerDecEvery)
}

func (u *UnskewedAverage) applyFloors() {
	u.ResetPcnt = floor32(u.ResetPcnt, MinResetPcnt)
	u.AdjustPcnt = floor32(u.AdjustPcnt, MinAdjustPcnt)
	if u.SpikesRequired < MinSpikesRequired {
		u.SpikesRequired = MinSpikesRequired
	}
}

func (m *Misc) applyFloors() {
	m.UpdateTime = floor32(m.UpdateTime, MinUpdateTime)
}

// applyFloors clamps every bounded field of the configuration.
func (c *Config) applyFloors() {
	c.Spike.applyFloors()
	c.UnskewedAvg.applyFloors()
	c.Misc.applyFloors()
	for i := range c.FeedSettings {
		c.FeedSettings[i].Spike.applyFloors()
	}
	if c.Source.RequestsPerSecond <= 0 {
		c.Source.RequestsPerSecond = 1
	}
	if c.Source.BreakerFailures == 0 {
		c.Source.BreakerFailures = 1
	}
}
