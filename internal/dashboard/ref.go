package dashboard

import (
	"encoding/json"
	"fmt"
)

// 下游 JSON 中的关联字段有两种形态：裸 id 字符串，或展开后的对象。
// 这里解码成显式的带标签变体，消费方只能走 Resolved 分支判断，
// 不存在"拿到什么算什么"的运行时类型猜测。

// Customer 展开后的顾客记录。
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// CustomerRef 顾客引用：Unresolved(id) 或 Resolved(record)。
type CustomerRef struct {
	ID       string
	Record   *Customer
	Resolved bool
}

func (r *CustomerRef) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*r = CustomerRef{ID: id}
		return nil
	}
	var rec Customer
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("customer ref is neither id nor object: %w", err)
	}
	*r = CustomerRef{ID: rec.ID, Record: &rec, Resolved: true}
	return nil
}

func (r CustomerRef) MarshalJSON() ([]byte, error) {
	if r.Resolved && r.Record != nil {
		return json.Marshal(r.Record)
	}
	return json.Marshal(r.ID)
}

// RestaurantSummary 展开后的餐厅摘要。
type RestaurantSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RestaurantRef 餐厅引用：Unresolved(id) 或 Resolved(record)。
type RestaurantRef struct {
	ID       string
	Record   *RestaurantSummary
	Resolved bool
}

func (r *RestaurantRef) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*r = RestaurantRef{ID: id}
		return nil
	}
	var rec RestaurantSummary
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("restaurant ref is neither id nor object: %w", err)
	}
	*r = RestaurantRef{ID: rec.ID, Record: &rec, Resolved: true}
	return nil
}

func (r RestaurantRef) MarshalJSON() ([]byte, error) {
	if r.Resolved && r.Record != nil {
		return json.Marshal(r.Record)
	}
	return json.Marshal(r.ID)
}
