package emoji

const (
	WavingHandSign              string = "\U0001F44B"           //👋
	Memo                        string = "\U0001F4DD"           //📝
	Package                     string = "\U0001F4E6"           //📦
	LeftPointingMagnifyingGlass string = "\U0001F50D"           //🔍
	RepeatSingleButton          string = "\U0001F502"           //🔂
	RightArrow                  string = "\U000027A1\U0000FE0F" // ➡️
	CheckMarkButton             string = "\U00002705"           //✅
	CrossMark                   string = "\U0000274C"           // ❌
	SpinnerCheckMark            string = "\x1b[1;92m ✓ \x1b[0m" //✓
	SpinnerCrossMark            string = "\x1b[1;91m ✗ \x1b[0m" //✗
	Gear                        string = "\u2699\uFE0F"         // ⚙️
	Warning                     string = "\U000026A0\U0000FE0F" // ⚠️
)
