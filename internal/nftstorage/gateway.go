package nftstorage

import "strings"

// DefaultGatewayHost serves content stored through nft.storage.
const DefaultGatewayHost = "nftstorage.link"

// GatewayURL returns the public link for a CID: https://<host>/ipfs/<cid>.
func GatewayURL(host, contentID string) string {
	host = strings.TrimRight(host, "/")
	if host == "" {
		host = DefaultGatewayHost
	}
	return "https://" + host + "/ipfs/" + contentID
}
