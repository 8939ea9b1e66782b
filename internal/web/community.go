package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mvpetrera/portfolio/internal/feed"
	"github.com/mvpetrera/portfolio/internal/models"
)

type postForm struct {
	Content  string `form:"content" json:"content" binding:"required"`
	TopicID  string `form:"topic_id" json:"topicId"`
	Username string `form:"username" json:"username"`
}

type replyForm struct {
	Content  string `form:"content" json:"content" binding:"required"`
	ParentID string `form:"parent_id" json:"parentId"`
	Username string `form:"username" json:"username"`
}

type reactionForm struct {
	Emoji string `form:"emoji" json:"emoji" binding:"required"`
}

type communityView struct {
	Topics []models.Topic
	Topic  *models.Topic
	Posts  []feed.PostView
}

type postPageView struct {
	Post     *feed.PostView
	Replies  []feed.ReplyView
	Page     int
	NextPage int
	PrevPage int
	HasNext  bool
	HasPrev  bool
	MaxReply int
}

// viewer is the author id kept in the session, empty for a new reader.
func (s *Server) viewer(c *gin.Context) string {
	return s.Sessions.GetString(c.Request.Context(), sessionUser)
}

// author returns who is writing. A reader without an author id in the session
// gets a new, not yet stored, author record.
func (s *Server) author(c *gin.Context, username string) feed.Author {
	if id := s.viewer(c); id != "" {
		return feed.Author{User: models.User{ID: id}}
	}
	return feed.Author{
		User: models.User{ID: uuid.New().String(), Username: strings.TrimSpace(username)},
		New:  true,
	}
}

// remember keeps a newly registered author in the session.
func (s *Server) remember(c *gin.Context, author feed.Author) {
	if author.New {
		s.Sessions.Put(c.Request.Context(), sessionUser, author.User.ID)
	}
}

func (s *Server) community(c *gin.Context) {
	ctx := c.Request.Context()
	topicID := c.Param("id")

	topics, err := s.Feed.Topics(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	posts, err := s.Feed.Feed(ctx, topicID, s.viewer(c))
	if err != nil {
		s.fail(c, err)
		return
	}

	view := communityView{Topics: topics, Posts: posts}
	for i := range topics {
		if topics[i].ID == topicID {
			view.Topic = &topics[i]
		}
	}
	title := "Community"
	if view.Topic != nil {
		title = view.Topic.Name + " | Community"
	}
	s.render(c, http.StatusOK, "community.html", title, view)
}

func (s *Server) post(c *gin.Context) {
	ctx := c.Request.Context()
	post, err := s.Feed.Post(ctx, c.Param("id"), s.viewer(c))
	if err != nil {
		s.fail(c, err)
		return
	}

	page, _ := strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}
	replies, err := s.Feed.Replies(ctx, post.ID, feed.DefaultReplyPage, (page-1)*feed.DefaultReplyPage)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.render(c, http.StatusOK, "post.html", "Community", postPageView{
		Post:     post,
		Replies:  replies,
		Page:     page,
		NextPage: page + 1,
		PrevPage: page - 1,
		HasNext:  page*feed.DefaultReplyPage < post.Replies,
		HasPrev:  page > 1,
		MaxReply: models.MaxReplyLength,
	})
}

func (s *Server) addPost(c *gin.Context) {
	var form postForm
	if err := c.ShouldBind(&form); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	author := s.author(c, form.Username)
	post, err := s.Feed.AddPost(c.Request.Context(), author, form.TopicID, form.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.remember(c, author)

	if wantsJSON(c) {
		c.JSON(http.StatusCreated, post)
		return
	}
	back := "/community"
	if form.TopicID != "" {
		back = "/community/topics/" + form.TopicID
	}
	c.Redirect(http.StatusSeeOther, back)
}

func (s *Server) addReply(c *gin.Context) {
	var form replyForm
	if err := c.ShouldBind(&form); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	author := s.author(c, form.Username)
	var parentID *string
	if form.ParentID != "" {
		parentID = &form.ParentID
	}

	postID := c.Param("id")
	reply, err := s.Feed.AddReply(c.Request.Context(), postID, parentID, author, form.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.remember(c, author)

	if wantsJSON(c) {
		c.JSON(http.StatusCreated, reply)
		return
	}
	c.Redirect(http.StatusSeeOther, "/community/posts/"+postID+"#reply-"+reply.ID)
}

func (s *Server) react(c *gin.Context) {
	var form reactionForm
	if err := c.ShouldBind(&form); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	viewer := s.author(c, "")
	postID := c.Param("id")
	summary, err := s.Feed.React(c.Request.Context(), postID, viewer, models.Reaction(form.Emoji))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.remember(c, viewer)

	if wantsJSON(c) {
		c.JSON(http.StatusOK, summary)
		return
	}
	c.Redirect(http.StatusSeeOther, "/community/posts/"+postID)
}
