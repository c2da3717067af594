package app

// Key binding constants used in the key handlers.
const (
	KeyQuit       = "q"
	KeyQuitUpper  = "Q"
	KeyCtrlC      = "ctrl+c"
	KeyTab        = "tab"
	KeyShiftTab   = "shift+tab"
	KeyUp         = "up"
	KeyDown       = "down"
	KeyJ          = "j"
	KeyK          = "k"
	KeyEnter      = "enter"
	KeyEsc        = "esc"
	KeyNextPage   = "n"
	KeyPrevPage   = "p"
	KeySearch     = "/"
	KeyRefresh    = "r"
	KeyLogout     = "o"
	KeyLeft       = "left"
	KeyRight      = "right"
	KeyH          = "h"
	KeyL          = "l"
	KeyShiftLeft  = "shift+left"
	KeyShiftRight = "shift+right"
	KeyEndLeft    = "H"
	KeyEndRight   = "L"
	KeyStepUp     = "+"
	KeyStepDown   = "-"
	KeyAdd        = "a"
	KeyClear      = "x"
	KeySubmit     = "s"
)
