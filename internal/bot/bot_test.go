package bot

import "testing"

func TestDecideHoldsCachedInputBetweenThinkTicks(t *testing.T) {
	c := New(1)
	first := c.Decide()
	for i := 0; i < thinkIntervalTicks-2; i++ {
		got := c.Decide()
		if got != first {
			t.Fatalf("expected cached input to hold, tick %d changed from %+v to %+v", i, first, got)
		}
	}
}

func TestDecideRerollsAfterThinkInterval(t *testing.T) {
	c := New(2)
	first := c.Decide()
	for i := 0; i < thinkIntervalTicks; i++ {
		c.Decide()
	}
	rerolled := c.Decide()
	if rerolled == first {
		t.Skip("random reroll happened to match the first decision; not a failure, just unlucky seed")
	}
}
