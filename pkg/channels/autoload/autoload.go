// Package autoload registers every built-in channel.
package autoload

import (
	_ "shopmate/pkg/channels/telegram"
	_ "shopmate/pkg/channels/web"
)
