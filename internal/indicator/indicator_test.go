package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLocale(t *testing.T) {
	require.Equal(t, localeEnglish, resolveLocale("en_US.UTF-8"))
	require.Equal(t, localeFrench, resolveLocale("fr_FR.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale(""))
	require.Equal(t, localeEnglish, resolveLocale("de_DE.UTF-8"))
}

func TestNotifyMessages(t *testing.T) {
	en := notifyMessages(localeEnglish)
	require.Equal(t, "Recording…", en.recording)
	require.Equal(t, "Paused", en.paused)

	fr := notifyMessages(localeFrench)
	require.Equal(t, "Enregistrement…", fr.recording)
	require.NotEmpty(t, fr.errorText)
}

func TestCueSamplesCoverAllKinds(t *testing.T) {
	for _, kind := range []cueKind{cueStart, cueStop, cueComplete, cueCancel} {
		require.NotEmpty(t, cueSamples(kind))
	}
	require.Empty(t, cueSamples(cueKind(99)))
}

func TestSynthesizeToneBoundsAmplitude(t *testing.T) {
	pcm := synthesizeTone(toneSpec{frequencyHz: 440, duration: 50_000_000, volume: 0.2})
	require.NotEmpty(t, pcm)
	for _, sample := range pcm {
		require.LessOrEqual(t, int(sample), 7000)
		require.GreaterOrEqual(t, int(sample), -7000)
	}
}

func TestSynthesizeCueInsertsGaps(t *testing.T) {
	single := synthesizeCue([]toneSpec{{frequencyHz: 440, duration: 50_000_000, volume: 0.2}})
	double := synthesizeCue([]toneSpec{
		{frequencyHz: 440, duration: 50_000_000, volume: 0.2},
		{frequencyHz: 440, duration: 50_000_000, volume: 0.2},
	})
	require.Greater(t, len(double), 2*len(single))
}
