package shop

import (
	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/appscript/pkg/driver/appium"
	"github.com/devicelab-dev/appscript/pkg/script"
)

func textContains(s string) appium.By {
	return appium.NewUiSelector().TextContains(s).By()
}

// countAll sums matches over every text. A lookup error stops the count.
func countAll(s script.Session, texts []string) (int, error) {
	total := 0
	for _, t := range texts {
		found, err := s.FindElements(textContains(t))
		if err != nil {
			return total, err
		}
		total += len(found)
	}
	return total, nil
}

func count(s script.Session, by appium.By) (int, error) {
	found, err := s.FindElements(by)
	return len(found), err
}

// loginSucceeded reports whether the login form is gone and the app shows
// a home or user screen, or no input field at all.
func loginSucceeded(s script.Session, log *logrus.Entry) bool {
	signIn, err := count(s, SignInButton)
	if err != nil {
		log.Warnf("success check: %v", err)
		return false
	}
	home, err := countAll(s, HomeIndicators)
	if err != nil {
		log.Debugf("error searching for home elements: %v", err)
	}
	fields, err := count(s, AnyEditText)
	if err != nil {
		log.Warnf("success check: %v", err)
		return false
	}
	user, err := countAll(s, UserIndicators)
	if err != nil {
		log.Debugf("error searching for user elements: %v", err)
	}

	log.WithFields(logrus.Fields{"signIn": signIn, "home": home, "fields": fields, "user": user}).Debug("success indicators")
	return signIn == 0 && (home > 0 || fields == 0 || user > 0)
}

// loginFailed reports whether the login form is still shown or an error
// message is visible. An unreadable screen counts as failed.
func loginFailed(s script.Session, log *logrus.Entry) bool {
	fields, err := count(s, AnyEditText)
	if err != nil {
		log.Warnf("failure check: %v", err)
		return true
	}
	messages, err := countAll(s, ErrorIndicators)
	if err != nil {
		log.Debugf("error searching for error messages: %v", err)
	}
	signIn, err := count(s, SignInButton)
	if err != nil {
		log.Warnf("failure check: %v", err)
		return true
	}

	log.WithFields(logrus.Fields{"fields": fields, "errors": messages, "signIn": signIn}).Debug("failure indicators")
	return (fields > 0 && signIn > 0) || messages > 0
}
