package publisher

// Settings is an immutable credential snapshot handed to the dispatcher,
// processor and publisher factory for one invocation.
type Settings struct {
	TelegramBotToken  string `yaml:"telegram_bot_token"`
	TelegramChannelID string `yaml:"telegram_channel_id"`

	TildaCookies   string `yaml:"tilda_cookies"`
	TildaProjectID string `yaml:"tilda_project_id"`
	TildaFeedUID   string `yaml:"tilda_feed_uid"`
	TildaSiteURL   string `yaml:"tilda_site_url"`

	VKAccessToken string `yaml:"vk_access_token"`
	VKOwnerID     string `yaml:"vk_owner_id"`

	OKPublicKey   string `yaml:"ok_public_key"`
	OKAccessToken string `yaml:"ok_access_token"`
	OKAppSecret   string `yaml:"ok_app_secret"`
	OKGroupID     string `yaml:"ok_group_id"`

	FBAccessToken string `yaml:"fb_access_token"`
	FBPageID      string `yaml:"fb_page_id"`
	MetaProxyURL  string `yaml:"meta_proxy_url"`

	ThreadsAccessToken string `yaml:"th_access_token"`
	ThreadsUserID      string `yaml:"th_user_id"`

	TwitterAuthToken string `yaml:"twitter_auth_token"`
	TwitterProxyURL  string `yaml:"twitter_proxy_url"`

	BlueskyHost        string `yaml:"bsky_host"`
	BlueskyHandle      string `yaml:"bsky_handle"`
	BlueskyAppPassword string `yaml:"bsky_app_password"`

	// SafeMode simulates every publish as a success without remote calls.
	SafeMode bool `yaml:"safe_publish_mode"`
}

// Keys maps the stored setting keys to their fields. Used to overlay
// key/value rows on top of a base snapshot.
func (s *Settings) Keys() map[string]*string {
	return map[string]*string{
		"telegram_bot_token":  &s.TelegramBotToken,
		"telegram_channel_id": &s.TelegramChannelID,
		"tilda_cookies":       &s.TildaCookies,
		"tilda_project_id":    &s.TildaProjectID,
		"tilda_feed_uid":      &s.TildaFeedUID,
		"tilda_site_url":      &s.TildaSiteURL,
		"vk_access_token":     &s.VKAccessToken,
		"vk_owner_id":         &s.VKOwnerID,
		"ok_public_key":       &s.OKPublicKey,
		"ok_access_token":     &s.OKAccessToken,
		"ok_app_secret":       &s.OKAppSecret,
		"ok_group_id":         &s.OKGroupID,
		"fb_access_token":     &s.FBAccessToken,
		"fb_page_id":          &s.FBPageID,
		"meta_proxy_url":      &s.MetaProxyURL,
		"th_access_token":     &s.ThreadsAccessToken,
		"th_user_id":          &s.ThreadsUserID,
		"twitter_auth_token":  &s.TwitterAuthToken,
		"twitter_proxy_url":   &s.TwitterProxyURL,
		"bsky_host":           &s.BlueskyHost,
		"bsky_handle":         &s.BlueskyHandle,
		"bsky_app_password":   &s.BlueskyAppPassword,
	}
}

// Configured reports whether p has every credential its adapter requires.
func (s Settings) Configured(p Platform) bool {
	switch p {
	case PlatformTG:
		return s.TelegramBotToken != "" && s.TelegramChannelID != ""
	case PlatformSite:
		return s.TildaCookies != "" && s.TildaProjectID != "" && s.TildaFeedUID != ""
	case PlatformVK:
		return s.VKAccessToken != "" && s.VKOwnerID != ""
	case PlatformOK:
		return s.OKAccessToken != "" && s.OKPublicKey != "" && s.OKAppSecret != "" && s.OKGroupID != ""
	case PlatformFB:
		return s.FBAccessToken != "" && s.FBPageID != ""
	case PlatformThreads:
		return s.ThreadsAccessToken != ""
	case PlatformX:
		return s.TwitterAuthToken != ""
	case PlatformBsky:
		return s.BlueskyHandle != "" && s.BlueskyAppPassword != ""
	}
	return false
}
