package rbac

// Route-level permissions. Row-level decisions are made by CanAccess.
var RolePermissions = map[string][]string{
	string(RoleAnonymous): {
		"course:view",
		"exam:view",
		"account:signup",
	},
	string(RoleStudent): {
		"course:view",
		"course:enroll",
		"video:complete",
		"exam:view",
		"session:*",
		"attempt:view-own",
		"certificate:view-own",
	},
	string(RoleInstructor): {
		"course:view",
		"course:create",
		"course:manage",
		"video:manage",
		"exam:view",
		"exam:manage",
		"session:*", // previews; attempts are rejected by the row policy
		"attempt:view-course",
		"enrollment:view-course",
	},
	string(RoleAdmin): {
		"*", // everything
	},
}
