package c2s

import "github.com/energizer-project/craftflow/internal/abstract"

// Kinds returns every client-sent kind in declaration order.
func Kinds() []abstract.Kind {
	return []abstract.Kind{
		abstract.Single("Handshake", constructHandshake),
		abstract.Single("StatusRequest", constructStatusRequest),
		abstract.Single("StatusPing", constructStatusPing),
		abstract.Single("LoginStart", constructLoginStart),
		abstract.Single("LoginEncryption", constructLoginEncryption),
		abstract.Single("LoginPluginResponse", constructLoginPluginResponse),
		abstract.Single("LoginAcknowledge", constructLoginAcknowledge),
		abstract.Single("ClientSettings", constructClientSettings),
		abstract.Single("ConfPlugin", constructConfPlugin),
		abstract.Single("ConfFinish", constructConfFinish),
		abstract.Single("ConfKeepAlive", constructConfKeepAlive),
		abstract.Single("ConfPong", constructConfPong),
		abstract.Single("ResourcePackResponse", constructResourcePackResponse),
		abstract.Single("KnownPacks", constructKnownPacks),
		abstract.Single("PlayKeepAlive", constructPlayKeepAlive),
	}
}
