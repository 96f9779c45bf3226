package fetch

import "testing"

func TestDetectBlockStatusCodes(t *testing.T) {
	reason, blocked := DetectBlock(429, []byte(`{"error":"too many requests"}`))
	if !blocked || reason != "rate_limit" {
		t.Errorf("429 should block as rate_limit, got %q %v", reason, blocked)
	}

	reason, blocked = DetectBlock(403, nil)
	if !blocked || reason != "forbidden" {
		t.Errorf("403 should block as forbidden, got %q %v", reason, blocked)
	}

	// other non-200 codes are plain transport errors, not defenses
	if _, blocked := DetectBlock(500, nil); blocked {
		t.Error("500 must not classify as a block")
	}
	if _, blocked := DetectBlock(404, nil); blocked {
		t.Error("404 must not classify as a block")
	}
}

func TestDetectBlockCleanResponse(t *testing.T) {
	body := []byte(`{"listings":[{"id":"a1","name":"Riverside loft","price":95000},{"id":"b2","name":"Garden studio","price":68000}],"total":2,"page":1}`)
	if reason, blocked := DetectBlock(200, body); blocked {
		t.Errorf("clean JSON flagged as block: %q", reason)
	}
}

func TestDetectBlockHTMLInsteadOfJSON(t *testing.T) {
	body := []byte(`<!DOCTYPE html><html><head><title>Welcome</title></head><body>hi</body></html>`)
	reason, blocked := DetectBlock(200, body)
	if !blocked {
		t.Fatal("HTML answer on a JSON endpoint must classify as a block")
	}
	if reason != "html_response" {
		t.Errorf("expected html_response, got %q", reason)
	}
}

func TestDetectBlockCaptchaWidget(t *testing.T) {
	body := []byte(`<html><body><div class="g-recaptcha" data-sitekey="xyz"></div></body></html>`)
	reason, blocked := DetectBlock(200, body)
	if !blocked || reason != "captcha" {
		t.Errorf("recaptcha widget should classify as captcha, got %q %v", reason, blocked)
	}
}

func TestDetectBlockChallengeScript(t *testing.T) {
	body := []byte(`<html><head><script src="/cdn-cgi/challenge-platform/h/b/orchestrate.js"></script></head><body></body></html>`)
	reason, blocked := DetectBlock(200, body)
	if !blocked || reason != "challenge-platform" {
		t.Errorf("challenge script should be detected, got %q %v", reason, blocked)
	}
}

func TestDetectBlockChallengeTitle(t *testing.T) {
	body := []byte(`<html><head><title>Pardon Our Interruption</title></head><body><p>please wait</p></body></html>`)
	reason, blocked := DetectBlock(200, body)
	if !blocked || reason != "pardon our interruption" {
		t.Errorf("challenge title should be detected, got %q %v", reason, blocked)
	}
}

func TestDetectBlockMarkerInJSON(t *testing.T) {
	body := []byte(`{"redirect":"https://www.example.com/account/captcha?return=/s/homes","listings":[],"total":0,"page":1,"per_page":50,"filters":{}}`)
	reason, blocked := DetectBlock(200, body)
	if !blocked || reason != "captcha" {
		t.Errorf("captcha marker in JSON should be detected, got %q %v", reason, blocked)
	}
}

func TestDetectBlockSkeletonPayload(t *testing.T) {
	reason, blocked := DetectBlock(200, []byte(`{}`))
	if !blocked || reason != "skeleton" {
		t.Errorf("near-empty 200 should classify as skeleton, got %q %v", reason, blocked)
	}

	// a short but honest error payload is not a skeleton
	if _, blocked := DetectBlock(200, []byte(`{"error":"no results"}`)); blocked {
		t.Error("short error payload must not classify as a block")
	}
}
