package browser

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/ifscdir/scraper/internal/page"
)

// applyResourceBlocking intercepts requests on p and fails those the
// blocklist names. The returned router runs until stopped.
func applyResourceBlocking(p *rod.Page, block page.Blocklist) *rod.HijackRouter {
	router := p.HijackRequests()

	router.MustAdd("*", func(ctx *rod.Hijack) {
		if block.Blocks(string(ctx.Request.Type())) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	go router.Run()
	return router
}
