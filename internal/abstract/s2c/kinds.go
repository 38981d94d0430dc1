package s2c

import "github.com/energizer-project/craftflow/internal/abstract"

// Kinds returns every server-sent kind in declaration order.
func Kinds() []abstract.Kind {
	return []abstract.Kind{
		abstract.Single("StatusInfo", constructStatusInfo),
		abstract.Single("StatusPong", constructStatusPong),
		abstract.Single("Disconnect", constructDisconnect),
		abstract.Single("LoginEncryptionBegin", constructLoginEncryptionBegin),
		abstract.Single("LoginSuccess", constructLoginSuccess),
		abstract.Single("LoginCompress", constructLoginCompress),
		abstract.Single("LoginPluginRequest", constructLoginPluginRequest),
		abstract.Single("ConfPlugin", constructConfPlugin),
		abstract.Single("ConfFinish", constructConfFinish),
		abstract.Single("ConfKeepAlive", constructConfKeepAlive),
		abstract.Single("ConfPing", constructConfPing),
		{Name: "ConfRegistry", Construct: constructConfRegistry},
		abstract.Single("ConfRemoveResourcePack", constructConfRemoveResourcePack),
		abstract.Single("ConfAddResourcePack", constructConfAddResourcePack),
		abstract.Single("ConfResetChat", constructConfResetChat),
		abstract.Single("ConfFeatureFlags", constructConfFeatureFlags),
		abstract.Single("ConfTags", constructConfTags),
		abstract.Single("ConfKnownPacks", constructConfKnownPacks),
		abstract.Single("PlayKeepAlive", constructPlayKeepAlive),
	}
}
