package order

import (
	"fmt"
	"time"
)

// AllowTransition 定义订单状态机的允许流转关系。
// 取消只允许在开始制作之前：一旦进入 preparing，后厨已经开工，
// 界面上不再提供取消入口（后端是否另有补偿流程不在这里假设）。
var AllowTransition = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusOutForDelivery},
	StatusOutForDelivery: {StatusDelivered},
	// 终态：不允许从 delivered / cancelled 再流转
	StatusDelivered: {},
	StatusCancelled: {},
}

// AllowedNext 返回 from 允许流转到的状态集合。
// 对终态和未知状态一律返回空集：不认识的状态绝不能解锁任何流转。
func AllowedNext(from Status) []Status {
	allowed, ok := AllowTransition[from]
	if !ok {
		return nil
	}
	out := make([]Status, len(allowed))
	copy(out, allowed)
	return out
}

// CanTransition 判断 from -> to 是否是一个允许的状态流转。
// from == to 视为允许：同状态重试是幂等的空操作。
func CanTransition(from, to Status) bool {
	if from == to {
		_, known := AllowTransition[from]
		return known
	}
	for _, s := range AllowTransition[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ApplyTransition 对订单应用状态变更，并维护关键时间字段。
// 仅在 CanTransition 返回 true 时生效。
func ApplyTransition(o *Order, to Status, now time.Time) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}
	from := o.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid order status transition: %s -> %s", from, to)
	}

	o.Status = to

	switch to {
	case StatusConfirmed:
		if o.ConfirmedAt == nil {
			t := now
			o.ConfirmedAt = &t
		}
	case StatusPreparing:
		if o.PreparingAt == nil {
			t := now
			o.PreparingAt = &t
		}
	case StatusOutForDelivery:
		if o.DispatchedAt == nil {
			t := now
			o.DispatchedAt = &t
		}
	case StatusDelivered:
		if o.DeliveredAt == nil {
			t := now
			o.DeliveredAt = &t
		}
	case StatusCancelled:
		if o.CancelledAt == nil {
			t := now
			o.CancelledAt = &t
		}
	}
	return nil
}
