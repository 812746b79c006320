package access

import "github.com/nhirsama/infra-console/src/inter"

// PermissionOf 角色对应的权限等级，未知角色没有任何权限
func PermissionOf(role inter.Role) inter.PermissionType {
	switch role {
	case inter.RoleAdmin:
		return inter.PermissionAdmin
	case inter.RoleManager:
		return inter.PermissionReadWrite
	case inter.RoleOperator, inter.RoleViewer:
		return inter.PermissionReadOnly
	default:
		return inter.PermissionNone
	}
}

// CanMutate 是否允许展示修改类操作 (新建资产、修改状态、录入与模拟传感器数据、触发预测)
// 只有 ADMIN 与 MANAGER 返回 true，角色必须精确匹配
// 这里只决定界面是否展示入口，后端仍会独立鉴权
func CanMutate(role inter.Role) bool {
	return PermissionOf(role) >= inter.PermissionReadWrite
}

// HasPermission 角色是否达到指定权限等级
func HasPermission(role inter.Role, min inter.PermissionType) bool {
	return PermissionOf(role) >= min
}
