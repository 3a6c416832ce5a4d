package usage

// Meter 是单调递增的使用计数器。
// 它没有任何权限逻辑：只能在访问策略放行之后调用 RecordUse。
type Meter struct {
	count uint64
}

func NewMeter() *Meter { return &Meter{} }

// Restore 用持久化的计数重建计数器
func Restore(count uint64) *Meter { return &Meter{count: count} }

// RecordUse 计数 +1 并返回新值
func (m *Meter) RecordUse() uint64 {
	m.count++
	return m.count
}

func (m *Meter) Count() uint64 { return m.count }
