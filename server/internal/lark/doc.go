// Package lark is a small client for the Lark (Feishu) open platform.
//
// It covers the calls a notification bot needs: tenant access token
// acquisition, chat listing, message sending and user lookup. The tenant
// token is cached until ten minutes before it expires; every authorized
// request waits for a valid token through WaitForToken, and concurrent
// refreshes are coalesced into one.
package lark
