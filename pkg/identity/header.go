package identity

// gatewayと下流サービス間で共有するHTTPヘッダー名。
const (
	// HeaderAuthorization は呼び出し元のBearerトークンを運ぶヘッダー。gatewayのみが検証する。
	HeaderAuthorization = "Authorization"
	// HeaderUserID はトークンのsubクレーム。gatewayが設定し、下流サービスが信頼する。
	HeaderUserID = "X-User-Id"
	// HeaderRoles はトークンのroleクレーム。サービス間呼び出しでは区切り文字で連結される。
	HeaderRoles = "X-Roles"
	// HeaderEmail はトークンのemailクレーム。
	HeaderEmail = "X-Email"
	// HeaderFullName はトークンのfullnameクレーム。
	HeaderFullName = "X-Full-Name"
	// HeaderInternalSecret は内部サービス用の共有シークレット。一致すれば認証をバイパスする。
	HeaderInternalSecret = "X-Internal-Secret"
)

// RoleSeparator はX-Rolesヘッダーで複数ロールを連結する区切り文字。
const RoleSeparator = ","

// TrustedHeaders はgatewayだけが設定してよいヘッダーの一覧。
// 外部から届いたリクエストからは必ず取り除く。
var TrustedHeaders = []string{
	HeaderUserID,
	HeaderRoles,
	HeaderEmail,
	HeaderFullName,
	HeaderInternalSecret,
}
