package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestIsBumpDone(t *testing.T) {
	cases := []struct {
		name string
		msg  *discordgo.Message
		want bool
	}{
		{
			name: "bump confirmation embed",
			msg: &discordgo.Message{Embeds: []*discordgo.MessageEmbed{
				{Description: "Bump done! :thumbsup:"},
			}},
			want: true,
		},
		{
			name: "unrelated embed",
			msg: &discordgo.Message{Embeds: []*discordgo.MessageEmbed{
				{Description: "Please wait before bumping again."},
			}},
			want: false,
		},
		{
			name: "no embeds",
			msg:  &discordgo.Message{Content: "Bump done"},
			want: false,
		},
	}
	for _, tc := range cases {
		if got := isBumpDone(tc.msg); got != tc.want {
			t.Fatalf("%s: isBumpDone = %v, want %v", tc.name, got, tc.want)
		}
	}
}
