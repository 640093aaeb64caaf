package e2e

import (
	"github.com/cucumber/godog"

	"tiptap/e2e/steps/common"
	"tiptap/e2e/steps/orders"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (health, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register catalog and order flow steps
	orders.RegisterSteps(ctx, tc)
}
