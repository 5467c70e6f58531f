package auth

// 角色集合。admin 可见全量数据，vendor 只能操作自己餐厅的数据。
const (
	RoleAdmin  = "admin"
	RoleVendor = "vendor"
)
